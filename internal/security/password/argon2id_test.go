package password

import "testing"

func TestHashVerify_Roundtrip(t *testing.T) {
	// Costo bajo para que el test sea rápido.
	p := Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

	phc, err := Hash(p, "hunter2!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify("hunter2!", phc) {
		t.Fatal("expected verify to succeed for correct password")
	}
	if Verify("hunter3!", phc) {
		t.Fatal("expected verify to fail for wrong password")
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	for _, phc := range []string{
		"",
		"$argon2id$v=19$garbage",
		"$bcrypt$v=19$m=8,t=1,p=1$abc$def",
		"$argon2id$v=18$m=8,t=1,p=1$abc$def",
	} {
		if Verify("x", phc) {
			t.Fatalf("expected verify to fail for %q", phc)
		}
	}
}

func TestHash_EmptyPassword(t *testing.T) {
	if _, err := Hash(Default, ""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
