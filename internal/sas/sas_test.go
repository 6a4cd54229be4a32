package sas

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/udovin/cloudctl/internal/perms"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("test-account-key"))

func testSigner(tb testing.TB) *Signer {
	signer, err := NewSigner("devaccount", testKey)
	if err != nil {
		tb.Fatal("Error:", err)
	}
	return signer
}

func TestSetupAccessPolicyPermission(t *testing.T) {
	var policy AccessPolicy
	if err := policy.SetPermissions("", perms.BlobLetters); err != nil {
		t.Fatal("Error:", err)
	}
	if policy.Permissions.Len() != 0 {
		t.Fatalf("Expected no permissions, got %v", policy.Permissions)
	}
	policy.Permissions = perms.NewPermissionSet(perms.Read)
	if err := policy.SetPermissions("", perms.BlobLetters); err != nil {
		t.Fatal("Error:", err)
	}
	testExpectSet(t, policy.Permissions, perms.Read)
	tests := []struct {
		Spec   string
		Expect []perms.Permission
	}{
		{"D", []perms.Permission{perms.Delete}},
		{"DdDdd", []perms.Permission{perms.Delete}},
		{"DR", []perms.Permission{perms.Delete, perms.Read}},
		{"DRrddrrr", []perms.Permission{perms.Delete, perms.Read}},
		{"rwd", []perms.Permission{perms.Delete, perms.Read, perms.Write}},
		{"dwr", []perms.Permission{perms.Delete, perms.Read, perms.Write}},
	}
	for _, test := range tests {
		if err := policy.SetPermissions(test.Spec, perms.BlobLetters); err != nil {
			t.Fatalf("SetPermissions(%q): %v", test.Spec, err)
		}
		testExpectSet(t, policy.Permissions, test.Expect...)
	}
	for _, spec := range []string{"rwDl", "x", "rwx", "ABC", "xyz"} {
		err := policy.SetPermissions(spec, perms.BlobLetters)
		if !errors.Is(err, perms.ErrInvalidCharacter) {
			t.Fatalf("SetPermissions(%q): expected invalid character, got %v", spec, err)
		}
		testExpectSet(t, policy.Permissions, perms.Delete, perms.Read, perms.Write)
	}
}

func TestSignVerify(t *testing.T) {
	signer := testSigner(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	resource := Resource{Container: "images", Blob: "cats/1.png"}
	policy := AccessPolicy{
		Start:       now.Add(-time.Hour),
		Expiry:      now.Add(time.Hour),
		Permissions: perms.MustParse("rw", perms.BlobLetters),
	}
	token, err := signer.Sign(resource, policy, "")
	if err != nil {
		t.Fatal("Error:", err)
	}
	query, err := url.ParseQuery(token)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, query.Get("sr"), "b")
	testExpect(t, query.Get("sp"), "rw")
	testExpect(t, query.Get("sv"), Version)
	testExpect(t, query.Get("spr"), "https")
	testExpect(t, query.Get("st"), "2026-01-01T11:00:00Z")
	testExpect(t, query.Get("se"), "2026-01-01T13:00:00Z")
	granted, err := signer.Verify(token, resource, now, nil)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpectSet(t, granted, perms.Read, perms.Write)
	if _, err := signer.Verify(token, resource, now.Add(2*time.Hour), nil); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Expected expired token, got %v", err)
	}
	if _, err := signer.Verify(token, resource, now.Add(-2*time.Hour), nil); !errors.Is(err, ErrTokenNotStarted) {
		t.Fatalf("Expected not started token, got %v", err)
	}
	other := Resource{Container: "images", Blob: "cats/2.png"}
	if _, err := signer.Verify(token, other, now, nil); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("Expected invalid signature, got %v", err)
	}
	tampered := strings.Replace(token, "sp=rw", "sp=rwd", 1)
	if _, err := signer.Verify(tampered, resource, now, nil); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("Expected invalid signature, got %v", err)
	}
	container := Resource{Container: "images"}
	if _, err := signer.Verify(token, container, now, nil); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Expected invalid token, got %v", err)
	}
}

func TestSignStoredPolicy(t *testing.T) {
	signer := testSigner(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	resource := Resource{Container: "images"}
	token, err := signer.Sign(resource, AccessPolicy{ID: "readers"}, HTTPSAndHTTP)
	if err != nil {
		t.Fatal("Error:", err)
	}
	stored := map[string]AccessPolicy{
		"readers": {
			ID:          "readers",
			Expiry:      now.Add(time.Hour),
			Permissions: perms.MustParse("rl", perms.ContainerLetters),
		},
	}
	granted, err := signer.Verify(token, resource, now, stored)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpectSet(t, granted, perms.Read, perms.List)
	if _, err := signer.Verify(token, resource, now, nil); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Expected invalid token, got %v", err)
	}
}

func TestSignInvalidPolicy(t *testing.T) {
	signer := testSigner(t)
	now := time.Now()
	tests := []struct {
		Resource Resource
		Policy   AccessPolicy
		Protocol Protocol
	}{
		{Resource{Container: "c1"}, AccessPolicy{Permissions: perms.NewPermissionSet(perms.Read)}, ""},
		{Resource{Container: "c1"}, AccessPolicy{Expiry: now.Add(time.Hour)}, ""},
		{Resource{Container: "c1"}, AccessPolicy{
			Start: now, Expiry: now.Add(-time.Hour),
			Permissions: perms.NewPermissionSet(perms.Read),
		}, ""},
		{Resource{Container: "c1", Blob: "b"}, AccessPolicy{
			Expiry: now.Add(time.Hour), Permissions: perms.NewPermissionSet(perms.List),
		}, ""},
		{Resource{Container: "c1"}, AccessPolicy{
			Expiry: now.Add(time.Hour), Permissions: perms.NewPermissionSet(perms.Read),
		}, "ftp"},
		{Resource{}, AccessPolicy{ID: "id"}, ""},
	}
	for i, test := range tests {
		if _, err := signer.Sign(test.Resource, test.Policy, test.Protocol); err == nil {
			t.Fatalf("Test %d: expected error", i)
		}
	}
}

func TestNewSigner(t *testing.T) {
	if _, err := NewSigner("", testKey); err == nil {
		t.Fatal("Expected error")
	}
	if _, err := NewSigner("devaccount", "not base64!"); err == nil {
		t.Fatal("Expected error")
	}
	if _, err := NewSigner("devaccount", ""); err == nil {
		t.Fatal("Expected error")
	}
}

func TestFullURI(t *testing.T) {
	uri := FullURI(
		"https://devaccount.blob.core.windows.net/",
		Resource{Container: "images", Blob: "cats/my cat.png"},
		"sv=1&sig=abc",
	)
	testExpect(t, uri, "https://devaccount.blob.core.windows.net/images/cats/my%20cat.png?sv=1&sig=abc")
	testExpect(t, FullURI("http://localhost", Resource{Container: "c1"}, ""), "http://localhost/c1")
}

func TestAccessPolicyJSON(t *testing.T) {
	policy := AccessPolicy{
		ID:          "readers",
		Expiry:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Permissions: perms.MustParse("lr", perms.ContainerLetters),
	}
	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, string(data), `{"id":"readers","expiry":"2026-01-01T00:00:00Z","permissions":"rl"}`)
	var decoded AccessPolicy
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, decoded.ID, policy.ID)
	testExpect(t, decoded.Expiry, policy.Expiry)
	testExpectSet(t, decoded.Permissions, perms.Read, perms.List)
	if err := json.Unmarshal([]byte(`{"permissions":"x"}`), &decoded); err == nil {
		t.Fatal("Expected error")
	}
}

func TestVerifyStoredPolicyForBlob(t *testing.T) {
	signer := testSigner(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stored := map[string]AccessPolicy{
		"readers": {
			ID:          "readers",
			Expiry:      now.Add(time.Hour),
			Permissions: perms.NewPermissionSet(perms.Read, perms.List),
		},
		"listers": {
			ID:          "listers",
			Expiry:      now.Add(time.Hour),
			Permissions: perms.NewPermissionSet(perms.List),
		},
	}
	blob := Resource{Container: "docs", Blob: "a.txt"}
	token, err := signer.Sign(blob, AccessPolicy{ID: "readers"}, HTTPSOnly)
	if err != nil {
		t.Fatal("Error:", err)
	}
	granted, err := signer.Verify(token, blob, now, stored)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpectSet(t, granted, perms.Read)
	container := Resource{Container: "docs"}
	token, err = signer.Sign(container, AccessPolicy{ID: "readers"}, HTTPSOnly)
	if err != nil {
		t.Fatal("Error:", err)
	}
	granted, err = signer.Verify(token, container, now, stored)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpectSet(t, granted, perms.Read, perms.List)
	token, err = signer.Sign(blob, AccessPolicy{ID: "listers"}, HTTPSOnly)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if _, err := signer.Verify(token, blob, now, stored); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Expected %v, got %v", ErrInvalidToken, err)
	}
	effective := EffectivePolicy(blob, AccessPolicy{ID: "readers"}, stored["readers"])
	testExpectSet(t, effective.Permissions, perms.Read)
	testExpect(t, effective.Expiry, now.Add(time.Hour))
}

func testExpectSet(tb testing.TB, set perms.PermissionSet, flags ...perms.Permission) {
	tb.Helper()
	if expect := perms.NewPermissionSet(flags...); !set.Equal(expect) {
		tb.Fatalf("Expected %v, got %v", expect, set)
	}
}

func testExpect[T comparable](tb testing.TB, output, answer T) {
	tb.Helper()
	if output != answer {
		tb.Fatalf("Expected %v, got %v", answer, output)
	}
}
