package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one completed simulation run.
type RunRecord struct {
	VersionedRecord
	ID               string  `json:"id"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	Seed             uint64  `json:"seed"`
	Rules            string  `json:"rules"`
	Loci             int     `json:"loci"`
	InitialSize      int     `json:"initial_size"`
	Generations      int     `json:"generations"`
	FinalGeneration  uint32  `json:"final_generation"`
	FinalSize        int     `json:"final_size"`
	FinalMeanFitness float64 `json:"final_mean_fitness"`
	Fixations        int     `json:"fixations"`
	Segregating      int     `json:"segregating"`
	Config           []byte  `json:"config,omitempty"`
}

// GenerationDiagnostics describes the parental generation observed while
// Generation was being produced.
type GenerationDiagnostics struct {
	Generation   uint32  `json:"generation"`
	N            int     `json:"n"`
	MeanFitness  float64 `json:"mean_fitness"`
	FitnessVar   float64 `json:"fitness_var"`
	MeanGenetic  float64 `json:"mean_genetic_value"`
	GeneticVar   float64 `json:"genetic_value_var"`
	MeanTrait    float64 `json:"mean_trait"`
	Segregating  int     `json:"segregating"`
	LiveGametes  int     `json:"live_gametes"`
	MutationPool int     `json:"mutation_pool"`
	Fixations    int     `json:"fixations"`
}

type FixationRecord struct {
	Generation uint32  `json:"generation"`
	Pos        float64 `json:"pos"`
	S          float64 `json:"s"`
	H          float64 `json:"h"`
	Origin     uint32  `json:"origin"`
	Neutral    bool    `json:"neutral"`
}

type SiteRecord struct {
	Pos       float64 `json:"pos"`
	S         float64 `json:"s"`
	H         float64 `json:"h"`
	Origin    uint32  `json:"origin"`
	Neutral   bool    `json:"neutral"`
	Count     uint32  `json:"count"`
	Frequency float64 `json:"frequency"`
}

// PopulationSnapshot is the segregating-site summary of a final population.
type PopulationSnapshot struct {
	VersionedRecord
	RunID      string       `json:"run_id"`
	Generation uint32       `json:"generation"`
	N          int          `json:"n"`
	Loci       int          `json:"loci"`
	Sites      []SiteRecord `json:"sites"`
}
