/*
 * Post From Email - Copyright (C) 2024 Ollie Jones.
 *    Contact: oj@plumislandmedia.net
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// Fragment runs the pipeline and extracts the document body as a
// single div with the given id. Embedded style sheets are hoisted
// into the div and rewritten so every rule is scoped under the new
// container, keeping the fragment safe to inline in a larger page.
func (s *Sanitizer) Fragment(raw []byte, id string) ([]byte, error) {
	root, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	s.Clean(root)
	s.Ingest(root)

	var css strings.Builder
	for _, sheet := range elementsOf(root, "style") {
		for c := sheet.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				css.WriteString(c.Data)
				css.WriteString("\n")
			}
		}
		if sheet.Parent != nil {
			sheet.Parent.RemoveChild(sheet)
		}
	}

	div := &html.Node{
		Type: html.ElementNode,
		Data: "div",
		Attr: []html.Attribute{{Key: "id", Val: id}},
	}

	if css.Len() > 0 {
		style := &html.Node{Type: html.ElementNode, Data: "style"}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: scopeCSS(css.String(), "#"+id)})
		div.AppendChild(style)
	}

	if body := findElement(root, "body"); body != nil {
		for c := body.FirstChild; c != nil; {
			next := c.NextSibling
			body.RemoveChild(c)
			div.AppendChild(c)
			c = next
		}
	}

	return Render(div)
}

// scopeCSS rewrites a style sheet so every rule applies only under
// the prefix selector. Conditional groups (@media, @supports) recurse;
// other at-rules pass through unchanged.
func scopeCSS(css, prefix string) string {
	var out strings.Builder
	i := 0
	n := len(css)

	for i < n {
		c := css[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			out.WriteByte(c)
			i++
			continue
		}

		if strings.HasPrefix(css[i:], "/*") {
			end := strings.Index(css[i:], "*/")
			if end < 0 {
				out.WriteString(css[i:])
				break
			}
			out.WriteString(css[i : i+end+2])
			i += end + 2
			continue
		}

		// The prelude runs to the rule's block or terminator.
		j := i
		for j < n && css[j] != '{' && css[j] != ';' {
			j++
		}
		if j >= n {
			out.WriteString(css[i:])
			break
		}

		if css[j] == ';' {
			// Block-less at-rule: @import, @charset.
			out.WriteString(css[i : j+1])
			i = j + 1
			continue
		}

		// Find the block's matching close brace.
		depth := 0
		k := j
		for k < n {
			if css[k] == '{' {
				depth++
			} else if css[k] == '}' {
				depth--
				if depth == 0 {
					break
				}
			}
			k++
		}
		if k >= n {
			// Unbalanced sheet; keep the tail as-is.
			out.WriteString(css[i:])
			break
		}

		prelude := strings.TrimSpace(css[i:j])
		body := css[j+1 : k]

		switch {
		case strings.HasPrefix(prelude, "@media"), strings.HasPrefix(prelude, "@supports"):
			out.WriteString(prelude)
			out.WriteString(" { ")
			out.WriteString(scopeCSS(body, prefix))
			out.WriteString(" }")
		case strings.HasPrefix(prelude, "@"):
			out.WriteString(css[i : k+1])
		default:
			out.WriteString(scopeSelectors(prelude, prefix))
			out.WriteString(" {")
			out.WriteString(body)
			out.WriteString("}")
		}
		i = k + 1
	}

	return out.String()
}

// scopeSelectors prefixes each comma-separated selector. The document
// selectors html and body collapse to the container itself.
func scopeSelectors(selectors, prefix string) string {
	parts := strings.Split(selectors, ",")
	for i, sel := range parts {
		sel = strings.TrimSpace(sel)
		switch strings.ToLower(sel) {
		case "html", "body":
			parts[i] = prefix
		default:
			parts[i] = prefix + " " + sel
		}
	}
	return strings.Join(parts, ", ")
}
