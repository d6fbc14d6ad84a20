// pseudon-validate checks a pseudonymized output directory against the same
// allow-list the run used: any surviving attribute outside the allow-list,
// the mandatory markers and the structurally required sets is a violation.
package main

import (
	"flag"
	"fmt"
	"os"

	"dicom-pseudon/internal/logging"
	"dicom-pseudon/internal/policy"
	"dicom-pseudon/internal/validate"
)

func main() {
	allowSkipHeader := flag.Bool("allow-skip-header", false, "Skip the first row of the allow list")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pseudon-validate [flags] <clean_dir> <allow_list>")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(2)
	}

	log := logging.New(logging.Config{Level: *logLevel, Pretty: true})

	allow, err := policy.LoadAllowList(args[1], *allowSkipHeader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	report, err := validate.NewChecker(allow).Run(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, v := range report.Violations {
		log.Error().Str("file", v.File).Str("tag", v.Tag.String()).Msg(v.Why)
	}

	fmt.Printf("Checked %d file(s), %d violation(s)\n", report.Files, len(report.Violations))
	if !report.OK() {
		os.Exit(1)
	}
}
