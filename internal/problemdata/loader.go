package problemdata

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	appErr "algojudge/pkg/errors"
)

// testFileName matches "<anything>-<N>.in" and "<anything>-<N>.out"; N is
// the case number that pairs inputs with outputs and fixes the order.
var testFileName = regexp.MustCompile(`^.+-(\d+)\.(in|out)$`)

// LoadDir reads the test cases from a local directory. Files that do not
// match the naming pattern are ignored; the remaining ones must pair up
// exactly, one .in and one .out per case number.
func LoadDir(dir string) ([]TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErr.Newf(appErr.TestDataMissing, "test data dir %s does not exist", dir)
		}
		return nil, appErr.Wrapf(err, appErr.TestDataCorrupt, "read test data dir failed")
	}

	inputs := make(map[int]string)
	outputs := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := testFileName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		switch m[2] {
		case "in":
			if prev, ok := inputs[n]; ok {
				return nil, appErr.Newf(appErr.TestDataUnpaired, "duplicate input for case %d: %s and %s", n, prev, path)
			}
			inputs[n] = path
		case "out":
			if prev, ok := outputs[n]; ok {
				return nil, appErr.Newf(appErr.TestDataUnpaired, "duplicate output for case %d: %s and %s", n, prev, path)
			}
			outputs[n] = path
		}
	}

	if len(inputs) == 0 && len(outputs) == 0 {
		return nil, appErr.Newf(appErr.TestDataMissing, "no test case files in %s", dir)
	}
	for n := range inputs {
		if _, ok := outputs[n]; !ok {
			return nil, appErr.Newf(appErr.TestDataUnpaired, "case %d has input but no output", n)
		}
	}
	for n := range outputs {
		if _, ok := inputs[n]; !ok {
			return nil, appErr.Newf(appErr.TestDataUnpaired, "case %d has output but no input", n)
		}
	}

	numbers := make([]int, 0, len(inputs))
	for n := range inputs {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	cases := make([]TestCase, 0, len(numbers))
	for _, n := range numbers {
		input, err := os.ReadFile(inputs[n])
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.TestDataCorrupt, "read %s failed", inputs[n])
		}
		expected, err := os.ReadFile(outputs[n])
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.TestDataCorrupt, "read %s failed", outputs[n])
		}
		cases = append(cases, TestCase{
			Number:   n,
			Input:    string(input),
			Expected: string(expected),
		})
	}
	return cases, nil
}
