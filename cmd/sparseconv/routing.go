package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseRouting parses a routing description such as "0,1;1,2;0,2".
// Output maps are separated by ';' and source indices by ','. An empty
// string means full connection and yields nil. An empty group ("0;;1")
// is an output map with no sources.
func parseRouting(s string) ([][]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	groups := strings.Split(s, ";")
	routing := make([][]int, len(groups))
	for f, group := range groups {
		group = strings.TrimSpace(group)
		routing[f] = []int{}
		if group == "" {
			continue
		}
		for _, field := range strings.Split(group, ",") {
			idx, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("routing: output map %d: %w", f, err)
			}
			routing[f] = append(routing[f], idx)
		}
	}
	return routing, nil
}
