// Package common provides logging infrastructure shared by every package
// in the query engine: a global logrus.Logger with error-level messages
// routed to stderr and everything else to stdout, matching container
// conventions where the two streams are captured separately.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus's formatted output to stderr for
// level=error lines and stdout for everything else.
type OutputSplitter struct{}

func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide logrus instance; every ambient log call in
// this repository goes through it or a *ContextLogger built on top of it.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
