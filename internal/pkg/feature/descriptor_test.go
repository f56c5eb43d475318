package feature

import "testing"

const sampleDescriptor = `{
	"id": "docker-in-docker",
	"version": "2.9.1",
	"options": {
		"moby": { "type": "boolean", "default": true },
		"version": { "type": "string", "default": "latest" }
	},
	"containerEnv": { "DOCKER_BUILDKIT": "1" }
}`

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte(sampleDescriptor))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.ID != "docker-in-docker" || d.Version != "2.9.1" {
		t.Fatalf("ParseDescriptor() = %+v", d)
	}
	if len(d.Options) != 2 {
		t.Fatalf("len(Options) = %d, want 2", len(d.Options))
	}
	if d.ContainerEnv["DOCKER_BUILDKIT"] != "1" {
		t.Fatalf("ContainerEnv = %v", d.ContainerEnv)
	}
}

func TestParseDescriptorTolerantOfUnknownFields(t *testing.T) {
	raw := `{"id": "x", "version": "1.0.0", "installsAfter": ["ghcr.io/devcontainers/features/common-utils"]}`
	d, err := ParseDescriptor([]byte(raw))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.ID != "x" || d.Options == nil || d.ContainerEnv == nil {
		t.Fatalf("ParseDescriptor() = %+v", d)
	}
}

func TestResolveOptionsFillsDeclaredDefaults(t *testing.T) {
	d, err := ParseDescriptor([]byte(sampleDescriptor))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	resolved := ResolveOptions(d, map[string]string{})
	if resolved["moby"].EnvString() != "true" {
		t.Errorf("moby = %q, want true", resolved["moby"].EnvString())
	}
	if resolved["version"].EnvString() != "latest" {
		t.Errorf("version = %q, want latest", resolved["version"].EnvString())
	}
}

func TestResolveOptionsUserValueOverridesDefault(t *testing.T) {
	d, err := ParseDescriptor([]byte(sampleDescriptor))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	resolved := ResolveOptions(d, map[string]string{"moby": "false", "version": "20.10"})
	if resolved["moby"].EnvString() != "false" {
		t.Errorf("moby = %q, want false", resolved["moby"].EnvString())
	}
	if resolved["version"].EnvString() != "20.10" {
		t.Errorf("version = %q, want 20.10", resolved["version"].EnvString())
	}
}

func TestResolveOptionsPassesThroughUndeclaredOption(t *testing.T) {
	d, err := ParseDescriptor([]byte(sampleDescriptor))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	resolved := ResolveOptions(d, map[string]string{"undeclared": "value"})
	if resolved["undeclared"].EnvString() != "value" {
		t.Errorf("undeclared = %q, want value", resolved["undeclared"].EnvString())
	}
}

func TestResolveOptionsEmptyUserValueFallsBackToDefault(t *testing.T) {
	d, err := ParseDescriptor([]byte(sampleDescriptor))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	resolved := ResolveOptions(d, map[string]string{"version": ""})
	if resolved["version"].EnvString() != "latest" {
		t.Errorf("version = %q, want latest", resolved["version"].EnvString())
	}
}
