/*
Copyright 2026 The gemlib Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headingStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	subHeadingStyle = lipgloss.NewStyle().Bold(true)
	linkIndexStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	linkTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	quoteStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	preStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// gemtextLine is one rendered screen line plus the link index it
// corresponds to, if any - mirroring the teacher's cmd/demo render()
// link-list-alongside-lines shape, rebuilt here against lipgloss styles
// instead of raw ANSI escapes since bubbletea owns the terminal.
type gemtextLine struct {
	text    string
	linkURL string
	hasLink bool
	linkNum int
}

// renderGemtext parses a text/gemini document into display lines and the
// ordered list of link targets it references, per the line-oriented
// gemtext grammar: "=>", "#", "##", "###", "* ", ">" and ``` toggle
// preformatted mode, where lines pass through unwrapped.
func renderGemtext(body string) []gemtextLine {
	var out []gemtextLine
	pre := false
	linkNum := 0

	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimRight(raw, "\r")

		if strings.HasPrefix(line, "```") {
			pre = !pre
			continue
		}

		if pre {
			out = append(out, gemtextLine{text: preStyle.Render(line)})
			continue
		}

		switch {
		case strings.HasPrefix(line, "=>"):
			rest := strings.TrimSpace(line[2:])
			url, label, _ := strings.Cut(rest, " ")
			label = strings.TrimSpace(label)
			if label == "" {
				label = url
			}
			linkNum++
			out = append(out, gemtextLine{
				text:    linkIndexStyle.Render("["+strconv.Itoa(linkNum)+"]") + " " + linkTextStyle.Render(label),
				linkURL: url,
				hasLink: true,
				linkNum: linkNum,
			})

		case strings.HasPrefix(line, "###"):
			out = append(out, gemtextLine{text: subHeadingStyle.Render(strings.TrimSpace(line[3:]))})

		case strings.HasPrefix(line, "##"):
			out = append(out, gemtextLine{text: subHeadingStyle.Render(strings.TrimSpace(line[2:]))})

		case strings.HasPrefix(line, "#"):
			out = append(out, gemtextLine{text: headingStyle.Render(strings.TrimSpace(line[1:]))})

		case strings.HasPrefix(line, ">"):
			out = append(out, gemtextLine{text: quoteStyle.Render(strings.TrimSpace(line[1:]))})

		case strings.HasPrefix(line, "* "):
			out = append(out, gemtextLine{text: "• " + line[2:]})

		default:
			out = append(out, gemtextLine{text: line})
		}
	}

	return out
}

// linkTargets extracts just the ordered URLs from rendered lines, the
// form the model needs to resolve a typed link number into a target.
func linkTargets(lines []gemtextLine) []string {
	var links []string
	for _, l := range lines {
		if l.hasLink {
			links = append(links, l.linkURL)
		}
	}
	return links
}
