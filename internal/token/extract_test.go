package token

import (
	"testing"

	"github.com/pybay-video/PVMC/internal/domain"
)

func TestExtract_CanonicalLayout(t *testing.T) {
	got := Extract("Robertson - 1000 - Brousseau - Welcome Remarks.mp4")
	want := domain.FilenameTokens{
		Room:  "Robertson",
		Time:  "1000",
		Name:  "Brousseau",
		Title: "Welcome Remarks",
	}
	if got != want {
		t.Fatalf("期望 %+v，实际 %+v", want, got)
	}
}

func TestExtract_TitleContainsDelimiter(t *testing.T) {
	got := Extract("Fisher - 2:30 pm - Hatfield-Dodds - Testing Tools - The Sequel.mp4")
	if got.Room != "Fisher" || got.Time != "2:30 pm" || got.Name != "Hatfield-Dodds" {
		t.Fatalf("记号识别错误：%+v", got)
	}
	// 标题内的分隔符必须原样保留。
	if got.Title != "Testing Tools - The Sequel" {
		t.Fatalf("期望标题保留分隔符，实际 %q", got.Title)
	}
}

func TestExtract_TimeVariants(t *testing.T) {
	for _, name := range []string{
		"Robertson - 10am - Brousseau - Welcome.mp4",
		"Robertson - 10:00 am - Brousseau - Welcome.mp4",
		"Robertson - 6:30PM - Brousseau - Welcome.mp4",
	} {
		got := Extract(name)
		if got.Time == "" {
			t.Fatalf("%q：期望识别出时间记号，实际 %+v", name, got)
		}
		if got.Name != "Brousseau" {
			t.Fatalf("%q：期望姓名片段 Brousseau，实际 %+v", name, got)
		}
	}
}

func TestExtract_DigitsInTitleNotTime(t *testing.T) {
	// 标题段里的数字（"Python 3"）不能被误判成时间。
	got := Extract("Fisher - Python 3 And You.mp4")
	if got.Time != "" {
		t.Fatalf("不期望识别出时间，实际 %+v", got)
	}
	if got.Room != "Fisher" || got.Title != "Python 3 And You" {
		t.Fatalf("归类错误：%+v", got)
	}
}

func TestExtract_MissingFields(t *testing.T) {
	// 没有分隔符结构：不猜 room，整体归入 title。
	got := Extract("randomfile.mp4")
	if got.Room != "" || got.Time != "" || got.Name != "" || got.Title != "randomfile" {
		t.Fatalf("期望仅 title，实际 %+v", got)
	}

	// 时间在末段：姓名缺失。
	got = Extract("Robertson - 1000.mp4")
	if got.Room != "Robertson" || got.Time != "1000" || got.Name != "" {
		t.Fatalf("期望 room+time，实际 %+v", got)
	}
}

func TestExtract_UnclassifiedSegmentFoldsIntoTitle(t *testing.T) {
	// time 之前无法归类的段并入 title，绝不丢弃。
	got := Extract("Robertson - Keynote - 1000 - Brousseau - Welcome.mp4")
	if got.Time != "1000" || got.Name != "Brousseau" {
		t.Fatalf("记号识别错误：%+v", got)
	}
	if got.Title != "Keynote - Welcome" {
		t.Fatalf("期望无法归类的段保留在 title 中，实际 %q", got.Title)
	}
}
