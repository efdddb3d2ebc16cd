package document_test

import (
	"fmt"

	"github.com/matzehuels/bpdoc/pkg/document"
)

func ExampleOutputPath() {
	fmt.Println(document.OutputPath("/Game/Props/BP_Door"))
	fmt.Println(document.OutputPath("/Game/Props/BP_Door.BP_Door"))
	fmt.Println(document.OutputPath("/Tools/BP_Tool"))
	// Output:
	// Props/BP_Door.json
	// Props/BP_Door.json
	// _mounts/Tools/BP_Tool.json
}

func ExampleMarshalIndex() {
	idx := document.NewIndex([]document.IndexEntry{
		{Name: "BP_Door", Path: "/Game/Props/BP_Door", Graphs: 1, Nodes: 3},
	})
	data, _ := document.MarshalIndex(idx)
	fmt.Print(string(data))
	// Output:
	// {
	//   "count": 1,
	//   "artifacts": [
	//     {
	//       "name": "BP_Door",
	//       "path": "/Game/Props/BP_Door",
	//       "graphs": 1,
	//       "nodes": 3,
	//       "variables": 0,
	//       "functions": 0,
	//       "components": 0,
	//       "dependencies": 0
	//     }
	//   ]
	// }
}
