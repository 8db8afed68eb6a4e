// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 speech 提供分段语音合成（TTS）与播放编排。

# 概述

长文本不会作为单个超大请求合成：[StripMarkup] 先去除 Markdown 结构并把裸链接替换为
"link"，[Chunk] 再按句子边界（. ! ? 后跟空白或结尾）打包为不超过字符上限的分段。

[Narrator] 负责播放：第 i 段按需合成并按下标缓存，同时预取第 i+1 段；
第 i 段播放结束后释放其缓存。未配置可用的 TTS Provider 时退化为本地朗读
（[LocalVoice]），并按角色类别调整语速与音调。

# 核心接口

  - TTSProvider：OpenAI（/v1/audio/speech）与 Gemini（generateContent AUDIO 模态）
  - AudioSink：播放一个分段并阻塞至播放结束（目录落盘 / 事件流 + 客户端确认）
  - LocalVoice：设备本地朗读（默认调用 espeak-ng）
*/
package speech
