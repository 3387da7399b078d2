package cliui

import "github.com/charmbracelet/lipgloss"

var (
	// DimStyle renders secondary information (hints, counts).
	DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// KeyStyle renders labels like "Model:" or "Session:".
	KeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

	// NameStyle renders names and identifiers.
	NameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	// ValueStyle renders configuration values.
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	// UserPrompt is the chat REPL input prompt.
	UserPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")

	// AssistantPrompt labels assistant replies in the chat REPL.
	AssistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)
