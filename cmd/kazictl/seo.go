package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/kazi-backend/internal/seo"
)

var (
	seoFile    string
	seoKeyword string
	seoTitle   string
	seoMeta    string
)

var seoCmd = &cobra.Command{
	Use:   "seo",
	Short: "SEO-анализ текста",
}

var seoAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Оценить текст из файла (или stdin при --file -)",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readInput(cmd, seoFile)
		if err != nil {
			return err
		}
		report := seo.Analyze(seo.Input{
			Title:           seoTitle,
			MetaDescription: seoMeta,
			Body:            string(body),
			Keyword:         seoKeyword,
		})
		return printReport(cmd.OutOrStdout(), report)
	},
}

func init() {
	seoAnalyzeCmd.Flags().StringVar(&seoFile, "file", "", "Файл с текстом (markdown или HTML)")
	seoAnalyzeCmd.Flags().StringVar(&seoKeyword, "keyword", "", "Ключевое слово")
	seoAnalyzeCmd.Flags().StringVar(&seoTitle, "title", "", "Заголовок страницы")
	seoAnalyzeCmd.Flags().StringVar(&seoMeta, "meta", "", "Мета-описание")
	_ = seoAnalyzeCmd.MarkFlagRequired("file")

	seoCmd.AddCommand(seoAnalyzeCmd)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printReport(w io.Writer, r *seo.Report) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "Score:       %d (%s)\n", r.Score, r.Grade)
	fmt.Fprintf(w, "Words:       %d\n", r.WordCount)
	fmt.Fprintf(w, "Sentences:   %d\n", r.SentenceCount)
	fmt.Fprintf(w, "Readability: %.2f\n", r.Readability)
	if r.KeywordCount > 0 || r.KeywordDensity > 0 {
		fmt.Fprintf(w, "Keyword:     %d hits, %.2f%%\n", r.KeywordCount, r.KeywordDensity)
	}
	fmt.Fprintln(w, "\nChecks:")
	for _, c := range r.Checks {
		mark := "✗"
		if c.Passed {
			mark = "✓"
		}
		fmt.Fprintf(w, "  %s %-28s %s\n", mark, c.Name, c.Message)
	}
	if len(r.TopKeywords) > 0 {
		fmt.Fprintln(w, "\nTop keywords:")
		for _, k := range r.TopKeywords {
			fmt.Fprintf(w, "  %-20s %d (%.2f%%)\n", k.Word, k.Count, k.Density)
		}
	}
	return nil
}
