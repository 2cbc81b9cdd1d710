package Web

import (
	"fmt"
	"html/template"
	"path/filepath"
)

// loadTemplates parses every named page template out of htmlDir. Each
// entry is parsed standalone (no shared base layout), matching how the
// handlers Execute them directly against the request body.
func loadTemplates(htmlDir string) map[string]*template.Template {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"hasPerm": func(userPerm int, reqPerm int) bool {
			return userPerm >= reqPerm
		},
	}

	parse := func(name, file string) *template.Template {
		t := template.New(name).Funcs(funcMap)
		return template.Must(t.ParseFiles(filepath.Join(htmlDir, file)))
	}

	for _, name := range []string{
		"index.html",
		"login.html",
		"register.html",
		"unit_list.html",
		"metrics.html",
		"pending_list.html",
		"blacklist.html",
		"user_list.html",
		"pending_table.html",
		"blacklist_table.html",
	} {
		templates[name] = parse(name, name)
	}
	return templates
}
