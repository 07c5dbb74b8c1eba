package pgxsink

var LatestSnapshot = (*Store).latestSnapshot
