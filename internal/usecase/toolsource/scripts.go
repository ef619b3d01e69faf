package toolsource

import (
	"encoding/json"
	"fmt"
)

// BindingName is the host binding pages call with a fresh tool list.
const BindingName = "__webmcpToolsChanged"

// bootstrapExpression lists the page's tools and, when the tool API exists,
// routes future changes to BindingName in the same evaluation.
var bootstrapExpression = fmt.Sprintf(`(() => {
  const mct = navigator.modelContextTesting;
  if (!mct) return JSON.stringify([]);
  mct.registerToolsChangedCallback(() => {
    %[1]s(JSON.stringify(mct.listTools()));
  });
  return JSON.stringify(mct.listTools());
})()`, BindingName)

const listToolsExpression = `(() => {
  const mct = navigator.modelContextTesting;
  return JSON.stringify(mct ? mct.listTools() : []);
})()`

func executeToolExpression(name, inputArguments string) string {
	return fmt.Sprintf("navigator.modelContextTesting.executeTool(%s, %s)", jsString(name), jsString(inputArguments))
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
