package persondetector

import (
	"bufio"
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

//go:embed data/coco.names
var cocoNames string

// DefaultLabels are the 80 COCO class names darknet models are usually trained on.
func DefaultLabels() []string {
	return parseLabels(bufio.NewScanner(strings.NewReader(cocoNames)))
}

// LoadLabels reads a newline delimited label file. Line i names class i; trailing blank lines are
// ignored.
func LoadLabels(path string) (labels []string, err error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	scanner := bufio.NewScanner(f)
	labels = parseLabels(scanner)
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "cannot read labels from %q", path)
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("label file %q is empty", path)
	}
	return labels, nil
}

func parseLabels(scanner *bufio.Scanner) []string {
	labels := []string{}
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	return labels
}
