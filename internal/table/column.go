package table

// Column is a table header. Clicking it requests a sort by Sort.
type Column struct {
	Title string
	Width int
	Sort  []string
}

// HeaderIndicator returns the column titles with the sort arrow placed on the
// column whose first sort key matches lead.
func HeaderIndicator(cols []Column, lead string, dir Direction) []string {
	out := make([]string, len(cols))
	marked := false
	for i, c := range cols {
		out[i] = c.Title
		if marked || lead == "" || len(c.Sort) == 0 || c.Sort[0] != lead {
			continue
		}
		switch dir {
		case Ascending:
			out[i] += " ▲"
			marked = true
		case Descending:
			out[i] += " ▼"
			marked = true
		}
	}
	return out
}
