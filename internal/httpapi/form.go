// internal/httpapi/form.go
package httpapi

import (
	"encoding/json"
	"html/template"
	"net/http"
	"sort"
)

var formPostTpl = template.Must(template.New("fp").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>LTI Launch</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{range .Fields}}  <input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{end}}  <noscript><button type="submit">Continue</button></noscript>
</form>
</body></html>`))

// writeFormPost renders the auto-submitting browser form that carries a
// launch to the tool. Field order is fixed so the output is stable.
func writeFormPost(w http.ResponseWriter, actionURL string, params map[string]string) {
	type field struct{ Name, Value string }
	fields := make([]field, 0, len(params))
	for k, v := range params {
		fields = append(fields, field{Name: k, Value: v})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = formPostTpl.Execute(w, map[string]any{
		"Action": actionURL,
		"Fields": fields,
	})
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
