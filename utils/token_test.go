package utils

import "testing"

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")

	token, err := JwtGenerate(7, "keeper", "Store Keeper", "StoreKeeper")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	claims, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if claims.ID != 7 || claims.Username != "keeper" || claims.Role != "StoreKeeper" {
		t.Fatalf("claims: %+v", claims)
	}

	t.Setenv("API_SECRET", "rotated")
	if _, err := JwtValidate(token); err == nil {
		t.Fatalf("token signed with another secret must not validate")
	}
	if _, err := JwtValidate("not-a-token"); err == nil {
		t.Fatalf("garbage token must not validate")
	}
}
