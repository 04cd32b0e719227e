package imagesource

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProxyEndpoint_WrapQueryAssignment(t *testing.T) {
	proxy := ProxyEndpoint("https://proxy.example/raw?url=")

	got := proxy.Wrap("https://example.com/photo.webp?size=large")
	want := "https://proxy.example/raw?url=https%3A%2F%2Fexample.com%2Fphoto.webp%3Fsize%3Dlarge"
	if got != want {
		t.Fatalf("wrapped URL mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestProxyEndpoint_WrapVerbatim(t *testing.T) {
	proxy := ProxyEndpoint("https://proxy.example/")

	got := proxy.Wrap("https://example.com/photo.png")
	want := "https://proxy.example/https://example.com/photo.png"
	if got != want {
		t.Fatalf("wrapped URL mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestDefaultProxyList_Order(t *testing.T) {
	list := DefaultProxyList()
	if len(list) != 2 {
		t.Fatalf("expected 2 default proxies, got %d", len(list))
	}
	// The first entry percent-encodes, the second appends verbatim; both
	// template rules stay covered by the defaults.
	if got := list[0].Wrap("https://a/b"); got != string(list[0])+"https%3A%2F%2Fa%2Fb" {
		t.Fatalf("first proxy should percent-encode, got %s", got)
	}
	if got := list[1].Wrap("https://a/b"); got != string(list[1])+"https://a/b" {
		t.Fatalf("second proxy should append verbatim, got %s", got)
	}
}

func TestProxyList_Clone(t *testing.T) {
	original := ProxyList{"https://one/?url=", "https://two/"}
	clone := original.Clone()

	if diff := cmp.Diff(original, clone); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}

	clone[0] = "https://mutated/"
	if original[0] != "https://one/?url=" {
		t.Fatalf("clone aliases the original list")
	}

	if ProxyList(nil).Clone() != nil {
		t.Fatalf("cloning nil should stay nil")
	}
}
