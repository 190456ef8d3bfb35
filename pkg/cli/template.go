/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/nodegroup"
)

var (
	templateGenerate     bool
	templateValidatePath string
	templateClusterName  string
	templateArchitecture string
)

// templateValidation is the output of --validate.
type templateValidation struct {
	Path   string   `json:"path" yaml:"path"`
	Valid  bool     `json:"valid" yaml:"valid"`
	Issues []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// templateCmd represents the template command
var templateCmd = &cobra.Command{
	Use:     "template",
	GroupID: "functional",
	Short:   "Generate and validate nodegroup templates",
	Long: `Generate an architecture-specific sample nodegroup template, or validate
an existing one against the required fields and scaling bounds.

Generated templates contain placeholder account values (role ARN, subnets)
the operator fills in before use.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		outFormat, err := parseFormat()
		if err != nil {
			return err
		}
		w := newWriter(outFormat)

		switch {
		case templateGenerate:
			arch, err := amitype.ParseArchitecture(templateArchitecture)
			if err != nil {
				return err
			}
			tpl, err := nodegroup.Default(templateClusterName, arch)
			if err != nil {
				return fmt.Errorf("error generating template: %w", err)
			}
			return w.Serialize(tpl)

		case templateValidatePath != "":
			tpl, err := nodegroup.Load(templateValidatePath)
			if err != nil {
				return fmt.Errorf("error loading template: %w", err)
			}
			issues := tpl.Validate()
			return w.Serialize(templateValidation{
				Path:   templateValidatePath,
				Valid:  len(issues) == 0,
				Issues: issues,
			})

		default:
			return fmt.Errorf("no operation specified, use --generate or --validate")
		}
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)

	templateCmd.Flags().BoolVarP(&templateGenerate, "generate", "", false, "generate a sample template")
	templateCmd.Flags().StringVarP(&templateValidatePath, "validate", "", "", "template file to validate")
	templateCmd.Flags().StringVarP(&templateClusterName, "cluster-name", "", "", "cluster name stamped into the generated template")
	templateCmd.Flags().StringVarP(&templateArchitecture, "architecture", "", "x86_64", "CPU architecture (x86_64, arm64)")

	templateCmd.Flags().StringVarP(&output, "output", "", "", "output file path (default: stdout)")
	templateCmd.Flags().StringVarP(&format, "format", "", "json", "output format (json, yaml, table)")
}
