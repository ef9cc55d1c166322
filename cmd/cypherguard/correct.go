package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanshika/cypherguard/internal/cypher"
)

// rejectedError marks a query the corrector refused. The rejection has
// already been reported on stderr.
type rejectedError struct {
	err error
}

func (e *rejectedError) Error() string { return e.err.Error() }
func (e *rejectedError) Unwrap() error { return e.err }

type correctOutput struct {
	Query      string `json:"query"`
	Corrected  string `json:"corrected,omitempty"`
	Changed    bool   `json:"changed"`
	Flipped    int    `json:"flipped"`
	Relabelled int    `json:"relabelled"`
	Kind       string `json:"kind"`
	Element    string `json:"element,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newCorrectCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "correct [query]",
		Short: "Correct a Cypher query read from the arguments or stdin",
		Example: `  cypherguard correct -s schema.yaml "MATCH (m:Movie)-[:ACTED_IN]->(p:Person) RETURN p"
  echo "MATCH (p:Person)-[:ACTED_IN]->(m:Movie) RETURN m" | cypherguard correct -s schema.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			s, err := root.loadSchema(cmd)
			if err != nil {
				return err
			}

			corrector := cypher.NewCorrector(s.Corrector(), cypher.WithLogger(root.logger(cmd)))
			res, cerr := corrector.Correct(cmd.Context(), query)
			if cerr != nil && !isRejection(cerr) {
				return cerr
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), newCorrectOutput(query, res, cerr)); err != nil {
					return err
				}
			} else if cerr == nil {
				fmt.Fprintln(cmd.OutOrStdout(), res.Query)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "rejected (%s): %v\n", cypher.KindName(cerr), cerr)
			}

			if cerr != nil {
				return &rejectedError{err: cerr}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func readQuery(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read query: %w", err)
	}
	query := strings.TrimSpace(string(data))
	if query == "" {
		return "", errors.New("no query given")
	}
	return query, nil
}

func isRejection(err error) bool {
	var rej *cypher.Rejection
	return errors.As(err, &rej)
}

func newCorrectOutput(query string, res cypher.Result, err error) correctOutput {
	out := correctOutput{Query: query, Kind: cypher.KindName(err)}
	if err != nil {
		out.Error = err.Error()
		var rej *cypher.Rejection
		if errors.As(err, &rej) {
			out.Element = rej.Element
		}
		return out
	}
	out.Corrected = res.Query
	out.Changed = res.Changed()
	out.Flipped = res.Flipped
	out.Relabelled = res.Relabelled
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
