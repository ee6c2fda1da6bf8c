package display

import (
	"github.com/backmassage/gltfpress/internal/failure"
)

var suggestions = map[failure.Kind]string{
	failure.KindFileNotFound:          "Make sure the file exists and try again.",
	failure.KindInvalidFile:           "Choose a valid glTF (.gltf) or GLB (.glb) file.",
	failure.KindBinaryNotFound:        "Install gltfpack next to gltfpress (Binaries/gltfpack) or pass --gltfpack.",
	failure.KindBinaryExecutionFailed: "Run 'gltfpress check' and reinstall gltfpack if it cannot start.",
	failure.KindExecutionFailed:       "Check the file for corruption or try different optimization settings.",
	failure.KindInvalidConfiguration:  "Adjust your settings and try again.",
	failure.KindPermissionDenied:      "Check read access to the input and write access to the output directory.",
	failure.KindDiskFull:              "Free up disk space and try again.",
	failure.KindUnknown:               "Please report this issue with the error details.",
}

// Suggestion returns the recovery hint for err, or "" when there is none
// (cancellation, nil).
func Suggestion(err error) string {
	if err == nil {
		return ""
	}
	return suggestions[failure.KindOf(err)]
}
