// Package report collects and summarizes stage report artifacts.
//
// Stages declare the report files their command produces (junit XML, coverage
// output). After a stage completes, the collector copies those files into the
// run's report directory and parses any junit XML it recognizes into a
// tests/failures/errors/skipped summary used by notifications and the status
// command.
package report

import (
	"encoding/xml"
	"os"

	"github.com/mrz1836/gantry/internal/domain"
	"github.com/mrz1836/gantry/internal/errors"
)

// maxReportFileSize bounds report file reads. Test result files beyond this
// are truncated artifacts or not test results at all.
const maxReportFileSize = 64 << 20 // 64 MiB

// junitSuites models a <testsuites> document root.
type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

// junitSuite models a single <testsuite> element, which some tools emit as
// the document root.
type junitSuite struct {
	Tests    int `xml:"tests,attr"`
	Failures int `xml:"failures,attr"`
	Errors   int `xml:"errors,attr"`
	Skipped  int `xml:"skipped,attr"`
}

// ParseJUnitFile parses a junit XML report into a summary.
// Both <testsuites> and bare <testsuite> roots are accepted; pytest,
// go-junit-report, and most CI tools emit one of the two.
func ParseJUnitFile(path string) (domain.ReportSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.ReportSummary{}, errors.Wrapf(err, "failed to stat report %q", path)
	}
	if info.Size() > maxReportFileSize {
		return domain.ReportSummary{}, errors.Wrapf(errors.ErrValueOutOfRange,
			"report %q exceeds %d bytes", path, maxReportFileSize)
	}

	data, err := os.ReadFile(path) //#nosec G304 -- path is confined to the run's report directory by the collector
	if err != nil {
		return domain.ReportSummary{}, errors.Wrapf(err, "failed to read report %q", path)
	}

	return parseJUnit(data)
}

// parseJUnit decodes junit XML from raw bytes.
func parseJUnit(data []byte) (domain.ReportSummary, error) {
	var suites junitSuites
	if err := xml.Unmarshal(data, &suites); err == nil {
		var total domain.ReportSummary
		for _, s := range suites.Suites {
			total.Add(domain.ReportSummary{
				Tests:    s.Tests,
				Failures: s.Failures,
				Errors:   s.Errors,
				Skipped:  s.Skipped,
			})
		}
		return total, nil
	}

	var suite junitSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return domain.ReportSummary{}, errors.Wrap(err, "failed to parse junit report")
	}

	return domain.ReportSummary{
		Tests:    suite.Tests,
		Failures: suite.Failures,
		Errors:   suite.Errors,
		Skipped:  suite.Skipped,
	}, nil
}

// isJUnitFile sniffs whether a collected report looks like junit XML.
// Coverage files and other artifacts are collected but not parsed.
func isJUnitFile(data []byte) bool {
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.XMLName.Local == "testsuites" || probe.XMLName.Local == "testsuite"
}
