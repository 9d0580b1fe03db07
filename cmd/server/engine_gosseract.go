//go:build gosseract

package main

import _ "github.com/toricodesthings/resumeio-pdf/internal/ocr/gosseract"
