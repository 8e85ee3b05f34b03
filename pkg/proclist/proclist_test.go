package proclist

import "testing"

func TestFilterByName(t *testing.T) {
	procs := []Process{
		{Pid: 4, Name: "System"},
		{Pid: 812, Name: "notepad.exe"},
		{Pid: 1044, Name: "Notepad++.exe"},
		{Pid: 2300, Name: "game.exe"},
	}

	for _, tc := range []struct {
		query string
		want  []int
	}{
		{"notepad", []int{812, 1044}},
		{"NOTEPAD.EXE", []int{812}},
		{"exe", []int{812, 1044, 2300}},
		{"", []int{4, 812, 1044, 2300}},
		{"chrome", []int{}},
	} {
		t.Run(tc.query, func(t *testing.T) {
			got := filterByName(procs, tc.query)
			if len(got) != len(tc.want) {
				t.Fatalf("expected pids %v, got %#v", tc.want, got)
			}
			for i := range tc.want {
				if got[i].Pid != tc.want[i] {
					t.Fatalf("expected pids %v, got %#v", tc.want, got)
				}
			}
		})
	}
}
