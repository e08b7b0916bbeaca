package main

import "testing"

func TestParseArgsWith_CommonFlags(t *testing.T) {
	ca, extra, err := parseArgsWith([]string{"/videos", "--year=2024", "--apply"})
	if err != nil {
		t.Fatal(err)
	}
	if ca.Path != "/videos" || ca.Year != 2024 || !ca.YearSet || !ca.Apply || !ca.ApplySet {
		t.Fatalf("解析结果不符：%+v", ca)
	}
	if len(extra) != 0 {
		t.Fatalf("不应有附加参数：%v", extra)
	}
}

func TestParseArgsWith_ExtraFlags(t *testing.T) {
	ca, extra, err := parseArgsWith(
		[]string{"--folder", "https://drive.google.com/drive/folders/abc123", "/videos"},
		"--folder",
	)
	if err != nil {
		t.Fatal(err)
	}
	if ca.Path != "/videos" {
		t.Fatalf("path = %q", ca.Path)
	}
	if extra["--folder"] != "https://drive.google.com/drive/folders/abc123" {
		t.Fatalf("extra = %v", extra)
	}
}

func TestParseArgsWith_ExtraFlagEqualsForm(t *testing.T) {
	_, extra, err := parseArgsWith([]string{"--out=/tmp/data"}, "--out")
	if err != nil {
		t.Fatal(err)
	}
	if extra["--out"] != "/tmp/data" {
		t.Fatalf("extra = %v", extra)
	}
}

func TestParseArgsWith_Errors(t *testing.T) {
	cases := [][]string{
		{"--year", "abc"},
		{"--apply=maybe"},
		{"--unknown"},
		{"a", "b"},
		{"--url"},
	}
	for _, args := range cases {
		if _, _, err := parseArgsWith(args); err == nil {
			t.Errorf("parseArgsWith(%v) 应返回错误", args)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512B"},
		{2048, "2.0KB"},
		{3 * 1024 * 1024 * 1024, "3.0GB"},
	}
	for _, c := range cases {
		if got := formatBytes(c.in); got != c.want {
			t.Errorf("formatBytes(%d) = %q，期望 %q", c.in, got, c.want)
		}
	}
}
