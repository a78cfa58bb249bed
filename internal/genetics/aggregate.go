package genetics

// Aggregator combines per-locus genetic values into one.
type Aggregator interface {
	Aggregate(values []float64) float64
}

type AggregatorFunc func(values []float64) float64

func (f AggregatorFunc) Aggregate(values []float64) float64 { return f(values) }

type AggregateAdditive struct{}

func (AggregateAdditive) Aggregate(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// AggregateMultiplicative treats each value as a trait deviation and
// returns prod(1+v) - 1.
type AggregateMultiplicative struct{}

func (AggregateMultiplicative) Aggregate(values []float64) float64 {
	product := 1.0
	for _, v := range values {
		product *= 1 + v
	}
	return product - 1
}
