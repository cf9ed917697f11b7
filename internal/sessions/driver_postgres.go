package sessions

// Postgres driver for the multi-instance summary store variant.
import _ "github.com/lib/pq"
