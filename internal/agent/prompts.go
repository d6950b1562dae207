package agent

import (
	"fmt"

	"github.com/comigor/nl2sql-go/internal/database"
)

const directQueryHint = "\n\nPlease provide the SQL query directly in your response."

func generateQueryPrompt(dialect database.Dialect, rowLimit int) string {
	return fmt.Sprintf(`You are an agent designed to interact with a SQL database.
Given an input question, create a syntactically correct %s query to run,
then look at the results of the query and return the answer. Unless the user
specifies a specific number of examples they wish to obtain, always limit your
query to at most %d results.

You can order the results by a relevant column to return the most interesting
examples in the database. Never query for all the columns from a specific table,
only ask for the relevant columns given the question.

Wherever possible return the available data in tabular format.

DO NOT make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the database.`, dialect, rowLimit)
}

func checkQueryPrompt(dialect database.Dialect) string {
	return fmt.Sprintf(`You are a SQL expert with a strong attention to detail.
Double check the %s query for common mistakes, including:
- Using NOT IN with NULL values
- Using UNION when UNION ALL should have been used
- Using BETWEEN for exclusive ranges
- Data type mismatch in predicates
- Properly quoting identifiers
- Using the correct number of arguments for functions
- Casting to the correct data type
- Using the proper columns for joins

If there are any of the above mistakes, rewrite the query. If there are no mistakes,
just reproduce the original query.

You will call the appropriate tool to execute the query after running this check.`, dialect)
}
