// widgetctl drives the ChatBotYard widget from a terminal: chat with a
// project's assistant, preview the widget, and move configurations in and
// out as YAML.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 || args[0] == "--help" || args[0] == "-h" {
		printUsage()
		return nil
	}

	switch args[0] {
	case "try":
		return handleTryCommand(args[1:])
	case "preview":
		return handlePreviewCommand(args[1:])
	case "config":
		return handleConfigCommand(args[1:])
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage() {
	fmt.Println("usage: widgetctl [-h] {try,preview,config} ...")
	fmt.Println("")
	fmt.Println("Chat with and configure ChatBotYard widgets from the terminal.")
	fmt.Println("")
	fmt.Println("commands:")
	fmt.Println("  try                 Chat with a project's assistant")
	fmt.Println("  preview             Render a project's widget")
	fmt.Println("  config              Export or import a widget configuration as YAML")
	fmt.Println("")
	fmt.Println("options:")
	fmt.Println("  -h, --help          Show this help message")
}
