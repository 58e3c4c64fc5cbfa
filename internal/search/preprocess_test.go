package search

import (
	"reflect"
	"testing"
)

func TestFacts_FlattensTablesAndDropsSeparators(t *testing.T) {
	md := "# Rechnung Nr. 42\n\n--- Page 1 ---\n| Pos | Beschreibung | Betrag |\n|:---|---|--:|\n| 1 | Ölwechsel |  89,90 |\n\ntext\nSumme 89,90\n"
	want := []string{"Rechnung Nr. 42", "Pos Beschreibung Betrag", "1 Ölwechsel 89,90", "Summe 89,90"}
	if got := Facts(md); !reflect.DeepEqual(got, want) {
		t.Fatalf("Facts = %#v\nwant   %#v", got, want)
	}
}

func TestFacts_Empty(t *testing.T) {
	if got := Facts("\n  \n"); len(got) != 0 {
		t.Fatalf("expected no facts, got %#v", got)
	}
}
