package logging

import "os"

// stdout resolves os.Stdout on every write so tests that swap it still capture output.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}
