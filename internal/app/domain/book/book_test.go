package book

import "testing"

func TestNormalizeISBN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"978-0-13-468599-1", "9780134685991"},
		{"9780134685991", "9780134685991"},
		{" 84 376 0494 x ", "843760494X"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeISBN(c.in); got != c.want {
			t.Fatalf("NormalizeISBN(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeISBNIdempotent(t *testing.T) {
	in := "978-0-13-468599-1"
	once := NormalizeISBN(in)
	if twice := NormalizeISBN(once); twice != once {
		t.Fatalf("normalize not idempotent: %q -> %q", once, twice)
	}
}

func TestChannelIDByISBN(t *testing.T) {
	if got := ChannelIDByISBN("978-0-13-468599-1"); got != "book-isbn-9780134685991" {
		t.Fatalf("unexpected channel id %q", got)
	}
	if got := ChannelIDByISBN("  "); got != "" {
		t.Fatalf("expected empty channel id for blank isbn, got %q", got)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Cien Años de Soledad", "cien-anos-de-soledad"},
		{"El Quijote!!", "el-quijote"},
		{"  A   B  ", "a-b"},
		{"Don Quijote -- de la Mancha", "don-quijote-de-la-mancha"},
	}
	for _, c := range cases {
		if got := Slug(c.in); got != c.want {
			t.Fatalf("Slug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestChannelIDByTitle(t *testing.T) {
	if got := ChannelIDByTitle("Cien Años de Soledad"); got != "book-cien-anos-de-soledad" {
		t.Fatalf("unexpected channel id %q", got)
	}
}
