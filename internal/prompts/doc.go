// Package prompts contains the model prompt templates used by Marcus.
//
// Prompt text is Go code rather than config files because it is program
// logic: templates use fmt.Sprintf interpolation and can be validated by
// tests. The one user-editable piece, the advisor persona, can be
// replaced through config (advisor.persona_file); everything else lives
// here.
//
// Convention: each prompt family gets its own file (persona.go,
// research.go, report.go) with exported functions that accept the
// dynamic parts and return the fully interpolated prompt string.
package prompts
