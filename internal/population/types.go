package population

// Mutation is immutable once placed in the mutation pool. Gametes refer to
// mutations by their index (handle) in Population.Mutations.
type Mutation struct {
	Pos     float64 `json:"pos"`
	S       float64 `json:"s"`
	H       float64 `json:"h"`
	Origin  uint32  `json:"origin"`
	Neutral bool    `json:"neutral"`
}

// Gamete is a haplotype shared by handle between diploids. Neutral and
// Selected hold mutation handles ordered by mutation position.
type Gamete struct {
	N        uint32
	Neutral  []int
	Selected []int
}

// DiploidGenotype is the pair of gamete handles carried by one individual
// at one locus.
type DiploidGenotype struct {
	First  int
	Second int
}

// DiploidMetadata is recomputed every generation.
type DiploidMetadata struct {
	G         float64
	E         float64
	W         float64
	Geography [3]float64
	Label     int
	Parents   [2]int
	Deme      uint32
	Sex       int32
	Nodes     [2]int32
}

func founderMetadata(label int) DiploidMetadata {
	return DiploidMetadata{
		W:       1,
		Label:   label,
		Parents: [2]int{-1, -1},
		Nodes:   [2]int32{-1, -1},
	}
}
