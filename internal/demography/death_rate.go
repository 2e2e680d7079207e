package demography

// Relative COVID-19 death counts per age bucket. Bounds are lower-inclusive;
// the last bucket is open-ended.
var deathBuckets = []struct {
	from  int
	count float64
}{
	{0, 1},
	{5, 1},
	{18, 10},
	{30, 45},
	{40, 130},
	{50, 440},
	{65, 1300},
	{75, 3200},
	{85, 8700},
}

var deathTotal = func() float64 {
	var sum float64
	for _, b := range deathBuckets {
		sum += b.count
	}
	return sum
}()

// DeathRateRatio returns the share of deaths attributed to the age bucket
// containing age. Values are probability mass (count/total), so they are in
// [0,1], non-decreasing in age, and sum to one across buckets.
func DeathRateRatio(age int) float64 {
	count := deathBuckets[0].count
	for _, b := range deathBuckets {
		if age < b.from {
			break
		}
		count = b.count
	}
	return count / deathTotal
}

// DeathBucketStarts returns the lower bound of every bucket in ascending order.
func DeathBucketStarts() []int {
	out := make([]int, len(deathBuckets))
	for i, b := range deathBuckets {
		out[i] = b.from
	}
	return out
}
