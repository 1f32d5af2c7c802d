package token

import (
	"testing"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("ops", RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.VerifyToken(tok)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.Subject != "ops" || claims.Role != RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewJWTManager("secret", 1)
	other, _ := NewJWTManager("other", 1).GenerateToken("ops", RoleAdmin)
	expired, _ := NewJWTManager("secret", -1).GenerateToken("ops", RoleAdmin)

	for name, tok := range map[string]string{"wrong secret": other, "expired": expired, "garbage": "not.a.token"} {
		if _, err := m.VerifyToken(tok); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
