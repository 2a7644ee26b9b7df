package status

import (
	"bytes"
	"html/template"
	"time"
)

const displayLayout = "2006-01-02 15:04"

var fragment = template.Must(template.New("status").Funcs(template.FuncMap{
	"when": func(t time.Time, loc *time.Location) string {
		if t.IsZero() {
			return "never"
		}
		return t.In(loc).Format(displayLayout)
	},
}).Parse(`<div class="eduadmin-status">
<p><strong>Courses:</strong> {{.Snap.Courses}} <strong>Events:</strong> {{.Snap.Events}}</p>
{{- with .Snap.NextEvent}}
<p><strong>Next event:</strong> {{.Course}} - {{when .Start $.Loc}}</p>
{{- else}}
<p><strong>Next event:</strong> none scheduled</p>
{{- end}}
{{- with .Snap.LastRun}}
<p><strong>Last import:</strong> {{when .Time $.Loc}} - {{.Message}}</p>
<ul>
<li>Imported: {{.Stats.Imported}}</li>
<li>Updated: {{.Stats.Updated}}</li>
<li>Events added: {{.Stats.EventsAdded}}</li>
<li>Events updated: {{.Stats.EventsUpdated}}</li>
<li>Events removed: {{.Stats.EventsRemoved}}</li>
</ul>
{{- else}}
<p><strong>Last import:</strong> never</p>
{{- end}}
<p><strong>Last manual import:</strong> {{when .Snap.LastManual .Loc}}</p>
<p><strong>Next scheduled import:</strong> {{when .Snap.NextScheduled .Loc}}</p>
</div>
`))

// RenderHTML renders snap as an HTML fragment in the reporter's timezone.
func (r *Reporter) RenderHTML(snap Snapshot) (string, error) {
	var buf bytes.Buffer
	err := fragment.Execute(&buf, struct {
		Snap Snapshot
		Loc  *time.Location
	}{snap, r.location})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
