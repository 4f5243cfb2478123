package llm

var ParseAffect = parseAffect
var SplitForGollem = splitForGollem
