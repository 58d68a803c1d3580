package console

import "github.com/fatih/color"

// palette is the console colour scheme.
type palette struct {
	Line    *color.Color
	Index   *color.Color
	Prompt  *color.Color
	Error   *color.Color
	Success *color.Color
	Info    *color.Color
	Warning *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		Line:    color.New(color.FgCyan, color.Bold),
		Index:   color.New(color.FgMagenta),
		Prompt:  color.New(color.FgGreen, color.Bold),
		Error:   color.New(color.FgRed, color.Bold),
		Success: color.New(color.FgGreen),
		Info:    color.New(color.FgBlue),
		Warning: color.New(color.FgYellow),
	}
	if noColor {
		for _, c := range []*color.Color{p.Line, p.Index, p.Prompt, p.Error, p.Success, p.Info, p.Warning} {
			c.DisableColor()
		}
	}
	return p
}
