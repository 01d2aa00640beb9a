package learning

import (
	"strconv"
	"time"
)

// rec builds a record that only varies along sepal length.
func rec(sepalLength float64, species string) Record {
	return Record{
		FieldSepalLength: strconv.FormatFloat(sepalLength, 'f', -1, 64),
		FieldSepalWidth:  "0",
		FieldPetalLength: 0.0,
		FieldPetalWidth:  0,
		FieldSpecies:     species,
	}
}

// scenarioRecords are ten labeled records; with every third record held out,
// testing gets positions 2, 5 and 8.
func scenarioRecords() []Record {
	return []Record{
		rec(1.0, "A"),
		rec(1.1, "A"),
		rec(1.05, "A"), // testing: neighbors A, A, B
		rec(1.2, "B"),
		rec(5.0, "B"),
		rec(5.05, "B"), // testing
		rec(5.1, "B"),
		rec(9.0, "C"),
		rec(9.05, "C"), // testing
		rec(9.1, "C"),
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func loadedScenario(reg *Registry) *TrainingData {
	td := NewTrainingData(reg, "scenario", WithTestingEvery(3))
	if err := td.Load(scenarioRecords()); err != nil {
		panic(err)
	}
	return td
}

// irisRows is a slice of the classic iris dataset, ten rows per species.
var irisRows = [][5]string{
	{"5.1", "3.5", "1.4", "0.2", "Iris-setosa"},
	{"4.9", "3.0", "1.4", "0.2", "Iris-setosa"},
	{"4.7", "3.2", "1.3", "0.2", "Iris-setosa"},
	{"4.6", "3.1", "1.5", "0.2", "Iris-setosa"},
	{"5.0", "3.6", "1.4", "0.2", "Iris-setosa"},
	{"5.4", "3.9", "1.7", "0.4", "Iris-setosa"},
	{"4.6", "3.4", "1.4", "0.3", "Iris-setosa"},
	{"5.0", "3.4", "1.5", "0.2", "Iris-setosa"},
	{"4.4", "2.9", "1.4", "0.2", "Iris-setosa"},
	{"4.9", "3.1", "1.5", "0.1", "Iris-setosa"},
	{"7.0", "3.2", "4.7", "1.4", "Iris-versicolor"},
	{"6.4", "3.2", "4.5", "1.5", "Iris-versicolor"},
	{"6.9", "3.1", "4.9", "1.5", "Iris-versicolor"},
	{"5.5", "2.3", "4.0", "1.3", "Iris-versicolor"},
	{"6.5", "2.8", "4.6", "1.5", "Iris-versicolor"},
	{"5.7", "2.8", "4.5", "1.3", "Iris-versicolor"},
	{"6.3", "3.3", "4.7", "1.6", "Iris-versicolor"},
	{"4.9", "2.4", "3.3", "1.0", "Iris-versicolor"},
	{"6.6", "2.9", "4.6", "1.3", "Iris-versicolor"},
	{"5.2", "2.7", "3.9", "1.4", "Iris-versicolor"},
	{"6.3", "3.3", "6.0", "2.5", "Iris-virginica"},
	{"5.8", "2.7", "5.1", "1.9", "Iris-virginica"},
	{"7.1", "3.0", "5.9", "2.1", "Iris-virginica"},
	{"6.3", "2.9", "5.6", "1.8", "Iris-virginica"},
	{"6.5", "3.0", "5.8", "2.2", "Iris-virginica"},
	{"7.6", "3.0", "6.6", "2.1", "Iris-virginica"},
	{"4.9", "2.5", "4.5", "1.7", "Iris-virginica"},
	{"7.3", "2.9", "6.3", "1.8", "Iris-virginica"},
	{"6.7", "2.5", "5.8", "1.8", "Iris-virginica"},
	{"7.2", "3.6", "6.1", "2.5", "Iris-virginica"},
}

func irisRecords() []Record {
	records := make([]Record, len(irisRows))
	for i, row := range irisRows {
		records[i] = Record{
			FieldSepalLength: row[0],
			FieldSepalWidth:  row[1],
			FieldPetalLength: row[2],
			FieldPetalWidth:  row[3],
			FieldSpecies:     row[4],
		}
	}
	return records
}
