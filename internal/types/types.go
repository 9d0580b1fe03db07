package types

type GenerateRequest struct {
	Token  string `json:"token"`
	Format string `json:"format"` // "jpeg" | "png" | "webp", empty means configured default
	Size   int    `json:"size"`   // pixel size requested from the image endpoint
}

type PageReport struct {
	Page        int      `json:"page"`
	Scale       float64  `json:"scale"`
	Links       int      `json:"links"`
	Width       float64  `json:"width"`
	Height      float64  `json:"height"`
	WordCount   int      `json:"wordCount"`
	Quality     float64  `json:"quality"`
	WeakText    bool     `json:"weakText"`
	QualityNote []string `json:"qualityNotes,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Stage   string `json:"stage,omitempty"`
	RunID   string `json:"runId,omitempty"`
}
