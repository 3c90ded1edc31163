package httphandler

import (
	"runtime"

	"github.com/mccutchen/directlink"
)

// Diagnostics is the debug endpoint's response. The field names predate
// this service and are kept for the clients that read them.
type Diagnostics struct {
	// RuntimeVersion is the Go version the binary was built with.
	RuntimeVersion string `json:"python_version"`

	// BackendAvailable reports whether a backend was found at startup.
	BackendAvailable bool `json:"terabox_downloader_available"`

	// PackageInstalled reports whether the resolver command is on PATH,
	// independent of which strategy won.
	PackageInstalled bool `json:"package_installed"`

	// SearchPath is the head of the PATH the resolver command is looked up
	// in.
	SearchPath []string `json:"sys_path"`

	Strategy   string               `json:"strategy,omitempty"`
	Convention string               `json:"convention,omitempty"`
	Attempts   []directlink.Attempt `json:"attempts"`
}

// NewDiagnostics summarizes the outcome of backend detection.
func NewDiagnostics(d directlink.Detection, packageInstalled bool, searchPath []string) Diagnostics {
	diag := Diagnostics{
		RuntimeVersion:   runtime.Version(),
		BackendAvailable: d.Handle.Available(),
		PackageInstalled: packageInstalled,
		SearchPath:       searchPath,
		Strategy:         d.Handle.Strategy(),
		Attempts:         d.Attempts,
	}
	if d.Handle.Available() {
		diag.Convention = d.Handle.Convention().String()
	}
	if diag.SearchPath == nil {
		diag.SearchPath = []string{}
	}
	if diag.Attempts == nil {
		diag.Attempts = []directlink.Attempt{}
	}
	return diag
}
