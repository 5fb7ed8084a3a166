// Package ui holds the styling helpers shared by owlet CLI commands.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// RenderPass styles success output.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles warning output.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderErr styles error output.
func RenderErr(s string) string { return errStyle.Render(s) }

// RenderAccent styles emphasized values like table names and counts.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles secondary detail like timestamps.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderHeader styles section headings.
func RenderHeader(s string) string { return headerStyle.Render(s) }
