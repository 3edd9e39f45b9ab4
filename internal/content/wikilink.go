package content

import (
	"bytes"
	"html"
	"path"
	"regexp"
	"strings"
)

// wikilinkRE matches [[target#anchor|alias]] and its ![[embed]] form. A table cell may
// escape the alias separator as \|.
var wikilinkRE = regexp.MustCompile(`!?\[\[([^\[\]\|#\\]+)?(#+[^\[\]\|#\\]+)?(\\?\|[^\[\]#]+)?\]\]`)

var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".svg": {}, ".webp": {}, ".avif": {},
}

var mediaExts = map[string]string{
	".mp4": "video", ".webm": "video", ".ogv": "video", ".mov": "video",
	".mp3": "audio", ".wav": "audio", ".m4a": "audio", ".ogg": "audio", ".flac": "audio",
}

// WikilinkTransformer rewrites Obsidian-style wikilinks into CommonMark links, media
// embeds and transclusion placeholders. Fenced code blocks are left alone.
type WikilinkTransformer struct{}

func (WikilinkTransformer) Name() string { return "wikilinks" }

func (WikilinkTransformer) Transform(_ *BuildCtx, p *Page) error {
	p.Body = rewriteWikilinks(p.Body)
	return nil
}

func rewriteWikilinks(body []byte) []byte {
	if !bytes.Contains(body, []byte("[[")) {
		return body
	}
	lines := bytes.SplitAfter(body, []byte("\n"))
	fence := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(string(line))
		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			fence = "```"
			continue
		}
		if strings.HasPrefix(trimmed, "~~~") {
			fence = "~~~"
			continue
		}
		lines[i] = wikilinkRE.ReplaceAllFunc(line, rewriteWikilink)
	}
	return bytes.Join(lines, nil)
}

func rewriteWikilink(m []byte) []byte {
	sub := wikilinkRE.FindSubmatch(m)
	embed := m[0] == '!'
	target := strings.TrimSpace(string(sub[1]))
	anchor := strings.TrimSpace(strings.TrimLeft(string(sub[2]), "#"))
	alias := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(string(sub[3]), `\`), "|"))

	dest := target
	if anchor != "" {
		dest += "#" + anchor
	}

	if embed {
		ext := strings.ToLower(path.Ext(target))
		if _, ok := imageExts[ext]; ok {
			return []byte("![" + escapeLabel(alias) + "](<" + target + ">)")
		}
		if kind, ok := mediaExts[ext]; ok {
			return []byte(`<` + kind + ` src="` + html.EscapeString(target) + `" controls></` + kind + `>`)
		}
		if ext == ".pdf" {
			return []byte(`<iframe class="pdf" src="` + html.EscapeString(target) + `"></iframe>`)
		}
		return []byte(`<blockquote class="transclude" data-url="` + html.EscapeString(dest) +
			`" data-embed-alias="` + html.EscapeString(alias) + `"></blockquote>`)
	}

	display := alias
	if display == "" {
		switch {
		case target == "":
			display = anchor
		case anchor != "":
			display = target + " > " + anchor
		default:
			display = target
		}
	}
	if target == "" {
		return []byte("[" + escapeLabel(display) + "](<#" + anchor + ">)")
	}
	return []byte("[" + escapeLabel(display) + "](<" + dest + ">)")
}

func escapeLabel(s string) string {
	return strings.NewReplacer(`[`, `\[`, `]`, `\]`).Replace(s)
}
