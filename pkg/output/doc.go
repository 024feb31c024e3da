// Package output renders an app.Status for people and for machines.
//
// Terminal output is styled with semantic lipgloss styles defined in the
// embedded styles.yaml, with adaptive colours for light and dark themes,
// and uses pterm for tabular sections. Text output carries the same content
// without escape codes. JSON and YAML expose the typed snapshot as is.
package output
