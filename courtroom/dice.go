////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                       Dice                                         //
//                                                                                    //
// Die-rolling for the /roll family of commands. The specification grammar is         //
// the classic [<n>]d<sides>[+|-<bonus>]; a bare number rolls one die with            //
// that many sides. Quantity and sides are capped by configuration so a               //
// client can't ask the server to sum a million d1000000s.                            //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var diceSpecPattern = regexp.MustCompile(`^(\d*)[dD](\d+)([+-]\d+)?$`)

var diceRand = rand.New(rand.NewSource(time.Now().UnixNano()))

// DiceRoll is the outcome of one evaluated dice specification.
type DiceRoll struct {
	Spec    string
	Rolls   []int
	Bonus   int
	Total   int
}

// Description renders the roll the way it is shown in OOC chat, e.g.
// "3d6+2 = 4 + 2 + 6 + 2 = 14".
func (r DiceRoll) Description() string {
	parts := make([]string, len(r.Rolls))
	for i, v := range r.Rolls {
		parts[i] = strconv.Itoa(v)
	}
	breakdown := strings.Join(parts, " + ")
	if r.Bonus > 0 {
		breakdown += fmt.Sprintf(" + %d", r.Bonus)
	} else if r.Bonus < 0 {
		breakdown += fmt.Sprintf(" - %d", -r.Bonus)
	}
	if len(r.Rolls) == 1 && r.Bonus == 0 {
		return fmt.Sprintf("%s = %d", r.Spec, r.Total)
	}
	return fmt.Sprintf("%s = %s = %d", r.Spec, breakdown, r.Total)
}

// RollDice parses and evaluates a dice specification. An empty spec rolls
// a single d6. maxCount and maxValue bound the quantity and the number of
// sides.
func RollDice(spec string, maxCount, maxValue int) (DiceRoll, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = "1d6"
	}
	if n, err := strconv.Atoi(spec); err == nil {
		// bare number: one die with that many sides
		spec = "1d" + strconv.Itoa(n)
	}

	m := diceSpecPattern.FindStringSubmatch(spec)
	if m == nil {
		return DiceRoll{}, fmt.Errorf("\"%s\" is not a valid dice specification", spec)
	}

	qty := 1
	if m[1] != "" {
		var err error
		qty, err = strconv.Atoi(m[1])
		if err != nil || qty < 1 {
			return DiceRoll{}, fmt.Errorf("invalid die quantity in \"%s\"", spec)
		}
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 1 {
		return DiceRoll{}, fmt.Errorf("invalid die size in \"%s\"", spec)
	}
	bonus := 0
	if m[3] != "" {
		bonus, _ = strconv.Atoi(m[3])
	}

	if qty > maxCount {
		return DiceRoll{}, fmt.Errorf("no more than %d dice may be rolled at once", maxCount)
	}
	if sides > maxValue {
		return DiceRoll{}, fmt.Errorf("dice may have at most %d sides", maxValue)
	}

	result := DiceRoll{Spec: spec, Bonus: bonus}
	for i := 0; i < qty; i++ {
		v := diceRand.Intn(sides) + 1
		result.Rolls = append(result.Rolls, v)
		result.Total += v
	}
	result.Total += bonus
	return result, nil
}

// CoinFlip returns "heads" or "tails".
func CoinFlip() string {
	if diceRand.Intn(2) == 0 {
		return "heads"
	}
	return "tails"
}
