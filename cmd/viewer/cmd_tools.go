package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"viewer/internal/cid"
	"viewer/internal/language"
	"viewer/internal/signature"
)

var (
	cidLimit      int64
	signatureLang string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load the workspace into the database once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.store.SyncWorkspace(cmd.Context(), a.cfg.Storage.Workspace)
		if err != nil {
			return err
		}
		logger.Info("workspace synced", zap.String("workspace", a.cfg.Storage.Workspace))
		return printJSON(cmd, report)
	},
}

var cidCmd = &cobra.Command{
	Use:   "cid [file]",
	Short: "Print the content identifier of a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		id, err := cid.IdentifyLimited(data, cidLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.String())
		return nil
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Detect the language of a snippet",
	Long: `Prints the language a server definition would run as. A recognised
file suffix wins over content detection.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), detectLanguage(args, data))
		return nil
	},
}

var signatureCmd = &cobra.Command{
	Use:   "signature [file]",
	Short: "Print the entry-point signature of a snippet as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		lang := detectLanguage(args, data)
		if signatureLang != "" {
			l, ok := language.Parse(signatureLang)
			if !ok {
				return fmt.Errorf("unknown language %q", signatureLang)
			}
			lang = l
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		sig, err := signature.Analyze(ctx, lang, string(data))
		if err != nil {
			return err
		}
		return printJSON(cmd, sig)
	},
}

func init() {
	cidCmd.Flags().Int64Var(&cidLimit, "max-bytes", 0, "Reject content larger than this (0: no limit)")
	signatureCmd.Flags().StringVarP(&signatureLang, "language", "l", "", "Override language detection")
}

func detectLanguage(args []string, data []byte) language.Language {
	if len(args) == 1 && args[0] != "-" {
		if _, ext, ok := language.SplitSuffix(filepath.Base(args[0])); ok {
			if l, ok := language.ExecutableSuffix(ext); ok {
				return l
			}
		}
	}
	return language.Detect(string(data))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
