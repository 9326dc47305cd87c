package session

import (
	"sync"
	"testing"
)

func TestRegistry_CreateOrJoin(t *testing.T) {
	registry := NewRegistry()

	t.Run("create with generated key", func(t *testing.T) {
		scene, key, created := registry.CreateOrJoin("alpha", "")
		if !created {
			t.Fatal("Expected created=true for a fresh token")
		}
		if key == "" {
			t.Error("Expected a generated capability key")
		}
		if scene.Azimuth != 0 || scene.Elevation != 0 || scene.Zoom != 1 {
			t.Errorf("Expected default scene, got %+v", scene)
		}
		if scene.ClipPlane != [4]float64{0, 0, 0, 0} {
			t.Errorf("Expected zero clip plane, got %v", scene.ClipPlane)
		}
	})

	t.Run("create with supplied key", func(t *testing.T) {
		_, key, created := registry.CreateOrJoin("beta", "my-secret")
		if !created {
			t.Fatal("Expected created=true")
		}
		if key != "my-secret" {
			t.Errorf("Expected supplied key to be kept, got '%s'", key)
		}
	})

	t.Run("duplicate create does not reset state", func(t *testing.T) {
		_, key, _ := registry.CreateOrJoin("gamma", "")
		if !registry.UpdateScene("gamma", key, SceneState{Azimuth: 45, Elevation: 10, Zoom: 2}) {
			t.Fatal("Setup update failed")
		}

		scene, key2, created := registry.CreateOrJoin("gamma", "other-key")
		if created {
			t.Error("Expected created=false for an existing token")
		}
		if key2 != key {
			t.Error("Capability key changed on duplicate create")
		}
		if scene.Azimuth != 45 || scene.Zoom != 2 {
			t.Errorf("Scene state was reset: %+v", scene)
		}
	})
}

func TestRegistry_UpdateScene(t *testing.T) {
	registry := NewRegistry()
	_, key, _ := registry.CreateOrJoin("s1", "")

	t.Run("correct key applies patch", func(t *testing.T) {
		patch := SceneState{Azimuth: 90, Elevation: -15, Zoom: 1.5, ClipPlane: [4]float64{0, 0, 1, 0.2}}
		if !registry.UpdateScene("s1", key, patch) {
			t.Fatal("Expected update to apply")
		}
		scene, _ := registry.Snapshot("s1")
		if scene != patch {
			t.Errorf("Expected %+v, got %+v", patch, scene)
		}
	})

	t.Run("wrong key never mutates", func(t *testing.T) {
		before, _ := registry.Snapshot("s1")
		if registry.UpdateScene("s1", "wrong", SceneState{Azimuth: 180, Zoom: 3}) {
			t.Fatal("Expected update to be rejected")
		}
		after, _ := registry.Snapshot("s1")
		if before != after {
			t.Error("Scene mutated despite key mismatch")
		}
	})

	t.Run("invalid zoom rejected", func(t *testing.T) {
		if registry.UpdateScene("s1", key, SceneState{Zoom: 0}) {
			t.Error("Expected zoom=0 patch to be rejected")
		}
		if registry.UpdateScene("s1", key, SceneState{Zoom: -2}) {
			t.Error("Expected negative zoom patch to be rejected")
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		if registry.UpdateScene("nope", key, SceneState{Zoom: 1}) {
			t.Error("Expected update against unknown token to be rejected")
		}
	})
}

func TestRegistry_Authorize(t *testing.T) {
	registry := NewRegistry()
	_, key, _ := registry.CreateOrJoin("s1", "")

	if !registry.Authorize("s1", key) {
		t.Error("Expected capability key to authorize")
	}
	if registry.Authorize("s1", "wrong") {
		t.Error("Expected wrong key to be rejected")
	}
	if registry.Authorize("missing", key) {
		t.Error("Expected unknown session to be rejected")
	}
}

func TestRegistry_Controllers(t *testing.T) {
	registry := NewRegistry()
	registry.CreateOrJoin("s1", "")

	registry.AddController("s1", "u1")
	if !registry.IsController("s1", "u1") {
		t.Error("Expected u1 to be a controller")
	}
	if registry.IsController("s1", "u2") {
		t.Error("Expected u2 not to be a controller")
	}
	if registry.IsController("s2", "u1") {
		t.Error("Expected unknown session to report no controllers")
	}
}

func TestRegistry_Participants(t *testing.T) {
	registry := NewRegistry()
	registry.CreateOrJoin("s1", "")

	registry.AddParticipant("s1", "u1")
	registry.AddParticipant("s1", "u2")
	registry.AddController("s1", "u2")
	registry.AddParticipant("s1", "u3")

	got := registry.Participants("s1")
	want := []string{"u1", "u2", "u3"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d participants, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Participant %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	t.Run("remove releases controller entry too", func(t *testing.T) {
		registry.RemoveParticipant("s1", "u2")

		got := registry.Participants("s1")
		if len(got) != 2 {
			t.Fatalf("Expected 2 participants after removal, got %d", len(got))
		}
		if registry.IsController("s1", "u2") {
			t.Error("Expected controller entry to be released with the participant")
		}
	})
}

func TestRegistry_DescribeAndList(t *testing.T) {
	registry := NewRegistry()
	registry.CreateOrJoin("s1", "")
	registry.CreateOrJoin("s2", "")
	registry.AddParticipant("s1", "u1")
	registry.AddController("s1", "u1")

	info, err := registry.Describe("s1")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if info.Token != "s1" || info.Controllers != 1 || len(info.Participants) != 1 {
		t.Errorf("Unexpected info: %+v", info)
	}

	if _, err := registry.Describe("missing"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	if got := len(registry.List()); got != 2 {
		t.Errorf("Expected 2 sessions listed, got %d", got)
	}
	if registry.Count() != 2 {
		t.Errorf("Expected count 2, got %d", registry.Count())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup

	// Many goroutines racing on the same token must agree on one key.
	keys := make([]string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, key, _ := registry.CreateOrJoin("shared", "")
			keys[n] = key
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(keys); i++ {
		if keys[i] != keys[0] {
			t.Fatal("Concurrent creates observed different capability keys")
		}
	}
	if registry.Count() != 1 {
		t.Errorf("Expected a single session, got %d", registry.Count())
	}
}
