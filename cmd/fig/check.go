package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/classify"
)

var checkCommand = &cli.Command{
	Name:      "check",
	Usage:     "list the file links in some text (read from stdin if no arguments)",
	ArgsUsage: "[TEXT...]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "scrape",
			Usage: "treat the text as page URLs, and list the file links on each page",
		},
	},
	Action: check,
}

// Inline images can be huge, so only their start is printed.
const maxInlineShown = 80

var (
	typeColor  = color.New(color.FgCyan)
	nameColor  = color.New(color.FgGreen)
	errorColor = color.New(color.FgRed, color.Bold)
)

func check(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), "\n")
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	classifier := classify.New(classify.DefaultConfig)
	if !c.Bool("scrape") {
		printLinks(classifier.CheckLinks(c.Context, text))
		return nil
	}
	for page := range classifier.Scrape(c.Context, text) {
		if page.Err != nil {
			errorColor.Printf("%s: %v\n", page.URL, page.Err)
			continue
		}
		fmt.Printf("%s:\n", page.URL)
		printLinks(page.FileLinks)
	}
	return nil
}

func printLinks(links []fig.FileLink) {
	for _, link := range links {
		url := link.URL
		if len(url) > maxInlineShown && strings.HasPrefix(url, "data:") {
			url = url[:maxInlineShown] + "..."
		}
		typeColor.Printf("%-10s %-10s ", link.Type, link.Category())
		fmt.Print(url)
		if link.FileName != "" {
			nameColor.Printf(" (%s)", link.FileName)
		}
		fmt.Println()
	}
}
