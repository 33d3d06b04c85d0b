package docs

import "fmt"

// Topic is one built-in documentation page.
type Topic struct {
	Name    string // slug accepted by 'creeper docs <name>'
	Title   string
	Summary string // shown in the topic listing
	Content string // plain-text body
}

// All lists the topics in display order.
func All() []Topic {
	return topics
}

// Get returns the topic with the given slug.
func Get(name string) (Topic, error) {
	for _, t := range topics {
		if t.Name == name {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("unknown topic %q (run 'creeper docs' to list available topics)", name)
}
