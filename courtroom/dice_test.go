package courtroom

import (
	"strings"
	"testing"
)

func TestRollDiceBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		roll, err := RollDice("3d6", 20, 100)
		if err != nil {
			t.Fatal(err)
		}
		if len(roll.Rolls) != 3 {
			t.Fatalf("3d6 produced %d rolls", len(roll.Rolls))
		}
		for _, r := range roll.Rolls {
			if r < 1 || r > 6 {
				t.Fatalf("d6 rolled %d", r)
			}
		}
		if roll.Total < 3 || roll.Total > 18 {
			t.Fatalf("3d6 totalled %d", roll.Total)
		}
	}
}

func TestRollDiceDefaults(t *testing.T) {
	roll, err := RollDice("", 20, 100)
	if err != nil {
		t.Fatal(err)
	}
	if roll.Spec != "1d6" {
		t.Errorf("empty spec became %q, want 1d6", roll.Spec)
	}

	roll, err = RollDice("20", 20, 100)
	if err != nil {
		t.Fatal(err)
	}
	if roll.Spec != "1d20" {
		t.Errorf("bare number became %q, want 1d20", roll.Spec)
	}
}

func TestRollDiceBonus(t *testing.T) {
	roll, err := RollDice("2d4+3", 20, 100)
	if err != nil {
		t.Fatal(err)
	}
	if roll.Bonus != 3 {
		t.Errorf("bonus = %d, want 3", roll.Bonus)
	}
	sum := roll.Bonus
	for _, r := range roll.Rolls {
		sum += r
	}
	if sum != roll.Total {
		t.Errorf("total %d does not match rolls plus bonus %d", roll.Total, sum)
	}
	if !strings.Contains(roll.Description(), "2d4+3 = ") {
		t.Errorf("description %q does not lead with the dice expression", roll.Description())
	}
}

func TestRollDiceLimits(t *testing.T) {
	if _, err := RollDice("100d6", 20, 100); err == nil {
		t.Error("roll above the dice-count limit succeeded")
	}
	if _, err := RollDice("1d1000", 20, 100); err == nil {
		t.Error("roll above the face limit succeeded")
	}
	if _, err := RollDice("banana", 20, 100); err == nil {
		t.Error("malformed spec succeeded")
	}
	if _, err := RollDice("0d6", 20, 100); err == nil {
		t.Error("zero-dice roll succeeded")
	}
}

func TestCoinFlip(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seen[CoinFlip()] = true
	}
	for face := range seen {
		if face != "heads" && face != "tails" {
			t.Fatalf("coin landed on %q", face)
		}
	}
}
