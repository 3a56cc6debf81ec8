package report

import (
	"bytes"
	"text/template"
)

const readmeTemplate = `# Script changes: {{.Old}} -> {{.New}}

This archive lists the scripts that differ between two saves of a project.

## Layout
- **report.json**: one entry per target with its changed scripts, the
  scripts whose diff could not be obtained, and the patch written for each.
- **diffs/**: one unified patch per changed script, named
  ` + "`<target>-<scriptNo>.patch`" + `.

## Reading the results
- Scripts are compared by their rendered text. Both sides are sorted by text
  and paired by position; **scriptNo** is that position and is only
  meaningful inside this archive.
- **status** is ` + "`modified`, `added` or `removed`" + `.
- Unified diff context: **{{.Context}}** lines.
- Oversized patches carry the placeholder ` + "`# diff omitted (oversize)`" + `.

## Targets
{{range .Targets}}- {{.Key}}: {{.Status}}{{with .Results}}, {{len .}} changed{{end}}{{with .Failures}}, {{len .}} failed{{end}}
{{else}}- none
{{end}}`

var readmeTmpl = template.Must(template.New("readme").Parse(readmeTemplate))

func renderReadme(r Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := readmeTmpl.Execute(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
