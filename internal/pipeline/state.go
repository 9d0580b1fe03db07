package pipeline

// State is the position of a run. Failed and Done are terminal.
type State int

const (
	Idle State = iota
	FetchingMetadata
	FetchingImages
	Recognizing
	Assembling
	Done
	Failed
)

var stateNames = [...]string{
	Idle:             "idle",
	FetchingMetadata: "fetching_metadata",
	FetchingImages:   "fetching_images",
	Recognizing:      "recognizing",
	Assembling:       "assembling",
	Done:             "done",
	Failed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) Terminal() bool { return s == Done || s == Failed }
