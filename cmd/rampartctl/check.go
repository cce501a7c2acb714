package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/guillermoBallester/rampart/internal/adapter/policy"
	"github.com/guillermoBallester/rampart/internal/core/domain"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	checkCeiling    int
	checkWhitelist  []string
	checkForbidden  []string
	checkPolicyFile string
	checkFiles      []string
)

var checkCmd = &cobra.Command{
	Use:   "check [query ...]",
	Short: "Run queries through the validation pipeline without executing them",
	Long: `The check command classifies, validates, and normalizes each query exactly
as the rampart server would, and reports the verdict. Queries can be passed
as arguments, read from files with --file, or piped on stdin (one per line).

The command exits non-zero if any query is rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, err := collectQueries(args)
		if err != nil {
			return err
		}
		if len(queries) == 0 {
			return errors.New("no queries given: pass them as arguments, via --file, or on stdin")
		}

		ceiling := checkCeiling
		whitelist := checkWhitelist
		forbidden := checkForbidden
		if checkPolicyFile != "" {
			pol, err := policy.LoadFromFile(checkPolicyFile)
			if err != nil {
				return fmt.Errorf("loading policy: %w", err)
			}
			if pol.Ceiling > 0 {
				ceiling = pol.Ceiling
			}
			if len(pol.Whitelist) > 0 {
				whitelist = pol.Whitelist
			}
			if len(pol.ForbiddenKeywords) > 0 {
				forbidden = pol.ForbiddenKeywords
			}
		}

		validator := domain.NewValidator(whitelist, forbidden)

		rejected := 0
		for _, q := range queries {
			if !checkOne(validator, ceiling, q) {
				rejected++
			}
		}

		pterm.Println()
		if rejected > 0 {
			pterm.Error.Printfln("%d of %d queries rejected", rejected, len(queries))
			return fmt.Errorf("%d queries rejected", rejected)
		}
		pterm.Success.Printfln("all %d queries accepted", len(queries))
		return nil
	},
}

// checkOne runs a single query through the pipeline and prints the verdict.
// It returns true when the query is accepted.
func checkOne(validator *domain.Validator, ceiling int, raw string) bool {
	display := raw
	if len(display) > 72 {
		display = display[:69] + "..."
	}

	stmt, err := domain.Classify(raw)
	if err != nil {
		printVerdict(false, display, reasonForError(err), err.Error())
		return false
	}

	verdict := validator.Validate(stmt)
	if !verdict.Accepted {
		printVerdict(false, display, string(verdict.Reason), verdict.Message())
		return false
	}

	norm, err := domain.Normalize(stmt, ceiling)
	if err != nil {
		printVerdict(false, display, reasonForError(err), err.Error())
		return false
	}

	printVerdict(true, display, string(domain.ReasonOK), "")
	if norm.SQL != strings.TrimSpace(raw) {
		pterm.Printfln("    %s %s", pterm.Gray("rewritten:"), norm.SQL)
	}
	return true
}

func printVerdict(accepted bool, query, reason, detail string) {
	if accepted {
		pterm.Success.Printfln("%s", query)
		return
	}
	pterm.Error.Printfln("%s", query)
	pterm.Printfln("    %s %s", pterm.Gray("reason:"), reason)
	if detail != "" {
		pterm.Printfln("    %s %s", pterm.Gray("detail:"), detail)
	}
}

func reasonForError(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyStatement):
		return string(domain.ReasonParseAmbiguous)
	case errors.Is(err, domain.ErrParseAmbiguous):
		return string(domain.ReasonParseAmbiguous)
	default:
		return string(domain.ReasonExecutionError)
	}
}

// collectQueries gathers queries from arguments, --file flags, and stdin.
// Stdin is only read when no arguments or files are given and input is piped.
func collectQueries(args []string) ([]string, error) {
	queries := make([]string, 0, len(args))
	for _, a := range args {
		if strings.TrimSpace(a) != "" {
			queries = append(queries, a)
		}
	}

	for _, path := range checkFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				queries = append(queries, line)
			}
		}
	}

	if len(queries) == 0 {
		info, err := os.Stdin.Stat()
		if err == nil && info.Mode()&os.ModeCharDevice == 0 {
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				if strings.TrimSpace(scanner.Text()) != "" {
					queries = append(queries, scanner.Text())
				}
			}
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
		}
	}

	return queries, nil
}

func init() {
	checkCmd.Flags().IntVar(&checkCeiling, "row-limit-ceiling", 100, "Maximum number of rows a query may return")
	checkCmd.Flags().StringSliceVar(&checkWhitelist, "whitelist", nil, "Allowed tables (empty disables the whitelist rule)")
	checkCmd.Flags().StringSliceVar(&checkForbidden, "forbidden", nil, "Forbidden keywords (defaults to the built-in denylist)")
	checkCmd.Flags().StringVar(&checkPolicyFile, "policy-file", "", "Policy YAML overriding the other flags")
	checkCmd.Flags().StringSliceVarP(&checkFiles, "file", "f", nil, "File with one query per line (repeatable)")
}
