package sha256

import "testing"

func TestDocumentIDDeterministic(t *testing.T) {
	t.Parallel()

	got := DocumentID("hello world")
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if again := DocumentID("hello world"); again != got {
		t.Fatalf("expected deterministic id, got %s vs %s", got, again)
	}
	if other := DocumentID("https://wiki.example.com/display/ENG/Home"); other == got {
		t.Fatal("expected distinct locations to produce distinct ids")
	}
}
