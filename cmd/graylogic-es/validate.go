package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
)

// errInvalidRecords is returned when any record fails validation.
var errInvalidRecords = errors.New("invalid records")

type validationResult struct {
	File   string         `json:"file"`
	Index  int            `json:"index"`
	Valid  bool           `json:"valid"`
	Record map[string]any `json:"record,omitempty"`
	Field  string         `json:"field,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate entity records from YAML or JSON files",
		Long: `Validate entity records against the registered platform schemas.

Each file holds one record or a list of records. Use - to read standard
input. With --json the normalised form of every valid record is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := validateFiles(cmd, schema.Default(), args)
			if err != nil {
				return err
			}

			invalid := 0
			for _, r := range results {
				if !r.Valid {
					invalid++
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				if err := printJSON(out, results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Valid {
						fmt.Fprintf(out, "%s[%d]: ok (%s)\n", r.File, r.Index, r.Record[schema.KeyPlatform])
					} else {
						fmt.Fprintf(out, "%s[%d]: %s\n", r.File, r.Index, r.Error)
					}
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%w: %d of %d", errInvalidRecords, invalid, len(results))
			}
			return nil
		},
	}
}

func validateFiles(cmd *cobra.Command, reg *schema.Registry, paths []string) ([]validationResult, error) {
	var results []validationResult
	for _, path := range paths {
		records, err := readRecords(cmd, path)
		if err != nil {
			return nil, err
		}
		for i, raw := range records {
			res := validationResult{File: path, Index: i}
			rec, err := reg.ValidateRecord(raw)
			if err != nil {
				res.Error = err.Error()
				var fe *schema.FieldError
				if errors.As(err, &fe) {
					res.Field = fe.Key()
				}
			} else {
				res.Valid = true
				res.Record = rec.Map()
			}
			results = append(results, res)
		}
	}
	return results, nil
}
